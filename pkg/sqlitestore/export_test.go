package sqlitestore

// RegisteredStores exposes the signal registry size to external tests.
var RegisteredStores = registeredStores
