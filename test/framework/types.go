package framework

// TestingT is the subset of *testing.T the framework needs, matched
// loosely against the teacher's own TestingT seam so framework code never
// imports the testing package directly.
type TestingT interface {
	Logf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Helper()
	TempDir() string
	Cleanup(func())
}
