// Package errors defines the strata CLI's exit codes and the mapping from
// store failures to them.
//
// Commands return plain errors; main passes the result through [Classify]
// and exits with the code of the resulting [ExitError], printing its
// suggestion when there is one:
//
//	if err := cmd.Execute(); err != nil {
//		exitErr := errors.Classify(err)
//		fmt.Fprintln(os.Stderr, "Error:", exitErr)
//		os.Exit(exitErr.Code)
//	}
package errors
