// Package parser reads verif suite files.
//
// A suite is a YAML or JSON document listing targets (API roots, each
// checked by its own checker), the checks run against paths of each
// target, and equivalences between endpoints of two targets whose
// content must match:
//
//	variables:
//	  host: l10n.example.org
//	targets:
//	  - name: old
//	    host: "{{host}}"
//	    pathPrefix: api/
//	    checks:
//	      - path: "?done"
//	        status: 200
//	        json: true
//	        keys: [fr, de]
//	equivalences:
//	  - left:  {target: old, path: "?done"}
//	    right: {target: new, path: "done/"}
package parser
