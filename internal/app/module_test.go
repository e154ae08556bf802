package app

import (
	"testing"

	"github.com/naperu/wabarelay/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func TestModuleGraphIsComplete(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Module(), WithLogger()))
}

func TestOptionalBackendsDisabledWithoutConfig(t *testing.T) {
	cfg := &config.Config{}
	log := zap.NewNop()

	assert.Nil(t, provideArchive(cfg, log))

	repos := provideRepositories(nil)
	require.NotNil(t, repos)
	assert.NotNil(t, repos.Chat)

	gw := provideGateway(cfg, log)
	assert.False(t, gw.Configured())
}
