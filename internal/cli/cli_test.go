package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/probelab-io/probedeploy/internal/manifest"
)

func TestTerraformVars(t *testing.T) {
	m := &manifest.Manifest{
		AWS: manifest.AWSConfig{
			Region:  "eu-west-1",
			Servers: manifest.ServerSpec{Count: 3, InstanceType: "t3.small"},
		},
	}

	assert.Equal(t, map[string]string{
		"instance_count": "3",
		"instance_type":  "t3.small",
		"region":         "eu-west-1",
	}, terraformVars(m))
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["deploy"])
	assert.True(t, names["destroy"])
	assert.True(t, names["version"])
}

func TestManifestFlagDefault(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("manifest")
	if assert.NotNil(t, flag) {
		assert.Equal(t, manifest.DefaultFilename, flag.DefValue)
	}
}
