package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/wolfman30/barberia-elite/internal/config"
	"github.com/wolfman30/barberia-elite/internal/notify"
	"github.com/wolfman30/barberia-elite/internal/storage"
	"github.com/wolfman30/barberia-elite/internal/submission"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	logger := logging.New("error")
	assert.Nil(t, BuildRedisClient(context.Background(), nil, logger, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true))
}

func TestBuildStoreFactory(t *testing.T) {
	logger := logging.New("error")

	mem := BuildStoreFactory(&appconfig.Config{StoreBackend: appconfig.StoreMemory}, nil, logger)
	_, ok := mem("s1").(*storage.MemoryStore)
	assert.True(t, ok)

	fallback := BuildStoreFactory(&appconfig.Config{StoreBackend: appconfig.StoreRedis}, nil, logger)
	_, ok = fallback("s1").(*storage.MemoryStore)
	assert.True(t, ok)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, false)
	defer client.Close()

	factory := BuildStoreFactory(&appconfig.Config{StoreBackend: appconfig.StoreRedis}, client, logger)
	st := factory("s1")
	_, ok = st.(*storage.RedisStore)
	require.True(t, ok)
	require.NoError(t, st.Set(context.Background(), "lastMessage", map[string]string{"nombre": "Ana"}))
	assert.True(t, mr.Exists(SessionKeyPrefix+":s1:lastMessage"))
}

func TestLoadDefinitions(t *testing.T) {
	defs, err := LoadDefinitions(&appconfig.Config{})
	require.NoError(t, err)
	assert.Len(t, defs, 3)

	path := filepath.Join(t.TempDir(), "forms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`forms:
  - id: promoForm
    kind: newsletter
    record_key: promo
    revert_delay: 2s
    fields:
      - name: email
        required: true
        kind: email
`), 0o600))
	defs, err = LoadDefinitions(&appconfig.Config{FormsFile: path})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "promoForm", defs[0].ID)

	_, err = LoadDefinitions(&appconfig.Config{FormsFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestBuildForwarder(t *testing.T) {
	logger := logging.New("error")

	fwd, err := BuildForwarder(&appconfig.Config{}, nil, logger)
	require.NoError(t, err)
	assert.Nil(t, fwd)

	fwd, err = BuildForwarder(&appconfig.Config{ForwardSubmissions: true, ForwardBaseURL: "https://api.barberia.pe"}, nil, logger)
	require.NoError(t, err)
	_, ok := fwd.(*submission.Forwarder)
	assert.True(t, ok)

	_, err = BuildForwarder(&appconfig.Config{ForwardSubmissions: true}, nil, logger)
	assert.ErrorIs(t, err, submission.ErrMissingBaseURL)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")

	sender, name := BuildEmailSender(&appconfig.Config{EmailProvider: appconfig.EmailStub}, nil, logger)
	assert.Equal(t, appconfig.EmailStub, name)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender, name = BuildEmailSender(&appconfig.Config{EmailProvider: appconfig.EmailSendGrid, SendGridAPIKey: "key"}, nil, logger)
	assert.Equal(t, appconfig.EmailSendGrid, name)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	_, name = BuildEmailSender(&appconfig.Config{EmailProvider: appconfig.EmailSendGrid}, nil, logger)
	assert.Equal(t, appconfig.EmailStub, name)

	_, name = BuildEmailSender(&appconfig.Config{EmailProvider: appconfig.EmailSES}, nil, logger)
	assert.Equal(t, appconfig.EmailStub, name)
}
