// Command coach is an offline-first goal and focus tracker with background
// sync to a remote store.
package main

func main() {
	Execute()
}
