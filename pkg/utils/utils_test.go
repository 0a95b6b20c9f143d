package utils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := SplitHostPort("db.example.com")
	require.NoError(t, err)
	assert.Equal(t, "db.example.com", host)
	assert.Equal(t, 3306, port)

	host, port, err = SplitHostPort("127.0.0.1:3307")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 3307, port)

	host, port, err = SplitHostPort("::1")
	require.NoError(t, err)
	assert.Equal(t, "::1", host)
	assert.Equal(t, 3306, port)

	host, port, err = SplitHostPort("[fd00::10]:3307")
	require.NoError(t, err)
	assert.Equal(t, "fd00::10", host)
	assert.Equal(t, 3307, port)

	_, _, err = SplitHostPort("127.0.0.1:notaport")
	assert.Error(t, err)

	_, _, err = SplitHostPort("127.0.0.1:0")
	assert.Error(t, err)
}
