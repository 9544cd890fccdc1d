// Package config provides configuration parsing for treediff.
//
// The configuration is stored in treediff.json at the project root. Every
// field is optional; the CLI works with the defaults when no file exists.
//
// # Configuration File Structure
//
//	{
//	  "rootKey": "root",
//	  "diff": {
//	    "ignoreProps": ["onPressed"],
//	    "skipEventHandlers": false,
//	    "parallelDepth": 2,
//	    "workers": 8
//	  },
//	  "server": {
//	    "host": "localhost",
//	    "port": 7420,
//	    "maxBodyBytes": 8388608,
//	    "readTimeout": "10s",
//	    "writeTimeout": "10s",
//	    "shutdownTimeout": "5s"
//	  },
//	  "s3": {
//	    "region": "us-east-1",
//	    "bucket": "ui-snapshots",
//	    "prefix": "nightly/",
//	    "endpoint": "http://localhost:9000",
//	    "usePathStyle": true
//	  },
//	  "log": {"level": "info", "development": false}
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	patches, err := vdom.NewReconciler(cfg.DiffOptions()).Reconcile(prev, next)
package config
