package connpool_test

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/puppetlabs/relay-notify/pkg/connpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPoolSendsOnce(t *testing.T) {
	ctx := context.Background()

	var hits atomic.Int64
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Inc()

		b, err := ioutil.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(b))

		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	p := connpool.New(2)
	defer p.Close()

	req, err := p.NewRequest(ctx, http.MethodPost, s.URL, []byte(`{"a":1}`))
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, int64(1), hits.Load())
}

func TestPoolPassesThroughTransportErrors(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	addr := s.URL
	s.Close()

	p := connpool.New(1)
	defer p.Close()

	req, err := p.NewRequest(context.Background(), http.MethodPost, addr, nil)
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
	}
}

func TestPoolClosed(t *testing.T) {
	p := connpool.New(1)
	require.Equal(t, 1, p.Size())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	req, err := p.NewRequest(context.Background(), http.MethodPost, "http://localhost", nil)
	require.NoError(t, err)

	_, err = p.Do(req)
	require.Equal(t, connpool.ErrClosed, err)
}

func TestNewPanicsOnNonPositiveSize(t *testing.T) {
	assert.Panics(t, func() { connpool.New(0) })
}
