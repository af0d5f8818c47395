package e2e

import "testing"

// runOnAllConfigs is a helper that runs a test on every local configuration
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// runOnS3Configs is a helper that runs a test on S3 configurations
func runOnS3Configs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	// Check if Localstack is available
	if !CheckLocalstackAvailable(t) {
		t.Skip("Localstack not available, skipping S3 tests")
	}

	helper := NewLocalstackHelper(t)
	defer helper.Cleanup()

	for _, config := range S3Configurations() {
		t.Run(config.Name, func(t *testing.T) {
			SetupS3Config(t, config, helper)

			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// runEverywhere runs a test on the local configurations and, when
// Localstack is reachable, on S3 too
func runEverywhere(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	runOnAllConfigs(t, testFunc)
	t.Run("S3", func(t *testing.T) {
		runOnS3Configs(t, testFunc)
	})
}

// pattern returns size bytes of a repeating, position-dependent pattern
func pattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
