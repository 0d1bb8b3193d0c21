// Package logging builds the slog loggers used by the strata CLI.
//
// Terminal output goes through [Handler], a compact colorized text format
// that masks attribute values which look like credentials. Passing
// --log-file adds a JSON copy of every record through [MultiHandler].
//
//	logger := logging.New(logging.Config{
//		Level:  logging.LevelFromVerbosity(verbose),
//		Format: logging.FormatText,
//	})
//	ctx = logging.NewContext(ctx, logger)
//
// Library packages under pkg/ never import this package; they accept a
// *slog.Logger and default to discarding. Tests use [ForTest].
package logging
