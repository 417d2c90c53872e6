// Package egplog provides the standard EGP logging pattern: a named logger
// plus cheap boolean gates for two validation tiers that sit below DEBUG in
// verbosity, VERIFY and CONSISTENCY. egpgraph.Consistency is gated behind
// CONSISTENCY so that production builds at INFO or WARN never pay for it;
// egpgraph.Verify always runs when called, and only its success log line is
// gated behind VERIFY.
//
// logrus orders levels so that a *larger* Level value is *more* verbose
// (Panic=0 ... Trace=6). VERIFY and CONSISTENCY extend that scale past
// Trace: VERIFY is one step more verbose than Trace, CONSISTENCY one more
// again. A root level of Debug or above therefore never enables either;
// they must be requested explicitly via EGP_LOG_LEVEL=verify|consistency.
package egplog

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// VerifyLevel gates cheap structural validation (Verify).
const VerifyLevel logrus.Level = logrus.TraceLevel + 1

// ConsistencyLevel gates the expensive egpgraph.Consistency check
// (referenced-source existence and type compatibility; it does not check
// reverse references or recompute hashes).
const ConsistencyLevel logrus.Level = VerifyLevel + 1

var root = logrus.New()

func init() {
	root.SetOutput(os.Stderr)
	root.SetLevel(logrus.InfoLevel)
	if lvl := os.Getenv("EGP_LOG_LEVEL"); lvl != "" {
		applyLevel(lvl)
	}
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func applyLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "verify":
		root.SetLevel(VerifyLevel)
	case "consistency":
		root.SetLevel(ConsistencyLevel)
	default:
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			root.SetLevel(parsed)
		}
	}
}

// Logger returns a named logger entry, mirroring egp_logger(name=__name__)
// in the original Python.
func Logger(name string) *logrus.Entry {
	return root.WithField("logger", name)
}

// SetLevel overrides the root logger's level, e.g. for tests or CLI flags.
func SetLevel(lvl logrus.Level) {
	root.SetLevel(lvl)
}

// IsDebugEnabled reports whether DEBUG-level validation is active.
func IsDebugEnabled() bool {
	return root.IsLevelEnabled(logrus.DebugLevel)
}

// IsVerifyEnabled reports whether the VERIFY level is active (it gates
// egpgraph.Verify's success log line).
func IsVerifyEnabled() bool {
	return root.GetLevel() >= VerifyLevel
}

// IsConsistencyEnabled reports whether the expensive CONSISTENCY tier
// (egpgraph.Consistency) should run.
func IsConsistencyEnabled() bool {
	return root.GetLevel() >= ConsistencyLevel
}
