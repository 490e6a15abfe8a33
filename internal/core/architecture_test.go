package core_test

import (
	"testing"

	"pharmacore/testutil"
)

// Engines persist through domain.KVStore only.
func TestEnginesStayOffDriversAndTransport(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InfraImport, testutil.DriverImport, testutil.TransportImport),
		"core talks to storage through domain.KVStore")
	testutil.AssertNoTransitiveDependency(t, testutil.ModulePath+"/internal/core", testutil.AnyOf(testutil.InfraImport, testutil.DriverImport),
		"core must build without database or cloud SDKs")
}
