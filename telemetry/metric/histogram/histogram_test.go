//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package histogram

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestDynamicFloat64Histogram(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	h, err := NewDynamicFloat64Histogram(
		mp, "test.meter", "test.duration",
		metric.WithUnit("s"),
	)
	require.NoError(t, err)
	require.NotNil(t, h)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		h.Record(ctx, 0.25)
		h.Record(ctx, 1.5)
	})

	require.NoError(t, h.SetBuckets([]float64{0.1, 1, 10}))
	assert.NotPanics(t, func() { h.Record(ctx, 2.0) })
}

func TestDynamicInt64Histogram(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	h, err := NewDynamicInt64Histogram(mp, "test.meter", "test.tokens")
	require.NoError(t, err)
	require.NotNil(t, h)

	ctx := context.Background()
	h.Record(ctx, 128)

	require.NoError(t, h.SetBuckets([]float64{1, 64, 1024}))
	h.Record(ctx, 2048)
}

func TestNewHistogramNilProvider(t *testing.T) {
	_, err := NewDynamicFloat64Histogram(nil, "m", "n")
	assert.Error(t, err)

	_, err = NewDynamicInt64Histogram(nil, "m", "n")
	assert.Error(t, err)
}

func TestSetBucketsConcurrentRecord(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	h, err := NewDynamicInt64Histogram(mp, "test.meter", "test.concurrent")
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Record(ctx, int64(j))
			}
		}()
	}
	require.NoError(t, h.SetBuckets([]float64{10, 100}))
	wg.Wait()
}
