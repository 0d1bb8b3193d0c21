// Package backup keeps snapshots of store contents so a bad write can be
// undone.
//
// Each snapshot lives in its own directory:
//
//	~/.local/share/strata/backups/
//	└── {store}/
//	    └── {timestamp}/
//	        ├── manifest.json
//	        └── tree.json
//
// manifest.json records the SHA256 hash of tree.json; [Manager.Restore]
// refuses a snapshot whose data no longer matches. [Manager.Backup] prunes
// each store down to the retention count after writing.
//
// The CLI takes snapshots through a [Session] before the first write to
// each store, so one command creates at most one snapshot per store.
package backup
