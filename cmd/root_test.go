package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d4rkfella/db-backup/internal/config"
)

func TestBindFlags_CoversEveryKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	assert.Empty(t, bindFlags(rootCmd))

	keys := map[string]bool{}
	for _, k := range config.Keys {
		keys[k] = true
	}
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		assert.True(t, keys[strings.ReplaceAll(f.Name, "-", "_")], "flag --%s has no configuration key", f.Name)
	})
}

func TestBindFlags_FlagSetsKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	flags := rootCmd.PersistentFlags()
	f := flags.Lookup(flagName("s3_bucket"))
	require.NotNil(t, f)
	orig := f.Value.String()
	t.Cleanup(func() {
		_ = flags.Set("s3-bucket", orig)
		f.Changed = false
	})

	bindFlags(rootCmd)
	require.NoError(t, flags.Set("s3-bucket", "nightly-archives"))

	assert.Equal(t, "nightly-archives", viper.GetString("s3_bucket"))
}
