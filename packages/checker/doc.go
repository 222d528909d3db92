// Package checker implements the fluent endpoint checker at the heart of verif.
//
// A Checker holds the target URI (protocol, host, path prefix and path),
// fetches the resource through a Fetcher and runs chainable assertions
// against the cached content:
//
//	c := checker.New("Stores API")
//	c.SetHost("api.example.org").
//		SetPathPrefix("v1/").
//		SetPath("locales/").
//		FetchContent().
//		HasResponseCode(200).
//		IsJSON().
//		HasKeys([]string{"fr", "de"})
//	os.Exit(c.Report().ExitCode())
//
// Assertions never stop the chain. Failures are recorded and surface through
// Report, which prints a colorized summary and returns a Status usable as a
// CI exit code.
package checker
