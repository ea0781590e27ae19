package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/filegateway/internal/storage"
)

func TestInstrumented(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := storage.Instrumented(storage.NewMemoryStore(), reg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Put(ctx, storage.PutInput{Key: "k", Body: strings.NewReader("v"), Size: 1})
	require.NoError(t, err)
	_, err = s.Get(ctx, "missing")
	require.Error(t, err)

	expected := `
# HELP filegateway_store_operations_total Object store operations by operation and outcome kind.
# TYPE filegateway_store_operations_total counter
filegateway_store_operations_total{op="get",outcome="not_found"} 1
filegateway_store_operations_total{op="put",outcome="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "filegateway_store_operations_total"))

	_, err = storage.Instrumented(storage.NewMemoryStore(), reg)
	assert.Error(t, err, "registering twice fails")
}
