package config

// DefaultDatabasePath is where the service database lives unless
// DATABASE_PATH overrides it.
const DefaultDatabasePath = "./studymaster.db"
