// Package config handles the strata CLI's own configuration file.
//
// The file is found as config.yaml in the working directory or in
// ~/.config/strata, and any key can be overridden with a STRATA_ variable
// (STRATA_OUTPUT=json, STRATA_LOG_LEVEL=debug). It declares the stores the
// CLI assembles, highest precedence first:
//
//	version: 1
//	delimiter: ":"
//	output: yaml
//	stores:
//	  - name: overrides
//	    type: file
//	    tier: overrides
//	    readonly: true
//	    options:
//	      file: /etc/app/overrides.json
//	  - name: remote
//	    type: http
//	    cached: true
//	    options:
//	      url: https://config.internal/app
//	      timeout: 5s
//	  - name: user
//	    type: file
//	    options:
//	      file: ~/.config/app/user.yaml
//
// Without a stores list, [DefaultStores] is used. Store options are passed
// untouched to the provider engines, which reject unknown keys.
//
// Call [Init] once, then [Load]; check the result with [Validate].
package config
