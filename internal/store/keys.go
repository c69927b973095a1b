package store

// Persisted keys. These must stay stable across versions so an upgraded
// binary reads the data an older one wrote.
const (
	KeyGoals           = "dailycoach.goals"
	KeyTinyGoals       = "dailycoach.tinyGoals"
	KeyDailyTasks      = "dailycoach.dailyTasks"
	KeyRecurringTasks  = "dailycoach.recurringTasks"
	KeyQuotes          = "dailycoach.quotes"
	KeyPreferences     = "dailycoach.preferences"
	KeyStats           = "dailycoach.stats"
	KeySyncQueue       = "dailycoach.syncQueue"
	KeySyncState       = "dailycoach.syncState"
	KeyIDMappings      = "dailycoach.idMappings"
	KeyMigrationStatus = "dailycoach.migrationStatus"
	KeySequence        = "dailycoach.sequence"
)

// KeyPrefix is shared by every key the module writes.
const KeyPrefix = "dailycoach."
