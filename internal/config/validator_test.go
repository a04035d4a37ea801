package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/rollup-prover/pkg/types"
)

func TestValidateAppConfigAcceptsDefaults(t *testing.T) {
	assert.NoError(t, ValidateAppConfig(nil))
	assert.NoError(t, ValidateAppConfig(&types.AppConfig{}))
	assert.NoError(t, ValidateAppConfig(&types.AppConfig{
		Store:  &types.UserStoreConfig{Backend: types.StringPtr("badger"), ProofExpiration: types.StringPtr("1h")},
		Prover: &types.UserProverConfig{Curve: types.StringPtr("BN254"), ProofTimeout: types.StringPtr("5m")},
		Log:    &types.UserLogConfig{Level: types.StringPtr("warn")},
	}))
}

func TestValidateAppConfigCollectsErrors(t *testing.T) {
	err := ValidateAppConfig(&types.AppConfig{
		API:    &types.UserAPIConfig{HTTPPort: types.IntPtr(70000), ReadTimeout: types.StringPtr("soon")},
		Store:  &types.UserStoreConfig{Backend: types.StringPtr("etcd"), ProofExpiration: types.StringPtr("-1h")},
		Prover: &types.UserProverConfig{Curve: types.StringPtr("bls12-381"), MaxConcurrentProofs: types.IntPtr(0)},
		Log:    &types.UserLogConfig{Level: types.StringPtr("loud")},
	})
	require.Error(t, err)

	var verrs *ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs.Errors))
	for _, e := range verrs.Errors {
		fields = append(fields, e.(*ValidationError).Field)
	}
	assert.ElementsMatch(t, []string{
		"api.http_port", "api.read_timeout",
		"store.backend", "store.proof_expiration",
		"prover.curve", "prover.max_concurrent_proofs",
		"log.level",
	}, fields)
}

func TestProvideConfigServicesRejectsInvalid(t *testing.T) {
	_, err := ProvideConfigServices(ConfigParams{AppOptions: staticOptions{&types.AppConfig{
		Store: &types.UserStoreConfig{Backend: types.StringPtr("etcd")},
	}}})
	assert.Error(t, err)

	out, err := ProvideConfigServices(ConfigParams{})
	require.NoError(t, err)
	assert.NotNil(t, out.Provider)
}

type staticOptions struct{ cfg *types.AppConfig }

func (s staticOptions) GetAppConfig() *types.AppConfig { return s.cfg }
