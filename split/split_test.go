package split

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/m"
	"mlp_lib/parallel"
)

var (
	heOnce sync.Once
	heCtx  *ckkswrapper.HeContext
)

func testContext(t *testing.T) *ckkswrapper.HeContext {
	t.Helper()
	heOnce.Do(func() { heCtx = ckkswrapper.NewHeContextWithLogN(12) })
	return heCtx
}

func randomLayers(rng *rand.Rand, sizes []int) []m.LayerParams {
	layers := make([]m.LayerParams, len(sizes)-1)
	for i := range layers {
		in, out := sizes[i], sizes[i+1]
		w := make([]float64, out*in)
		for j := range w {
			w[j] = rng.NormFloat64()
		}
		b := make([]float64, out)
		for j := range b {
			b[j] = rng.NormFloat64()
		}
		layers[i] = m.LayerParams{W: mat.NewDense(out, in, w), B: mat.NewVecDense(out, b)}
	}
	return layers
}

func randomInputs(rng *rand.Rand, n, d int) *mat.Dense {
	X := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			X.Set(i, j, rng.Float64())
		}
	}
	return X
}

func TestRotations(t *testing.T) {
	assert.Nil(t, Rotations(1))
	assert.Equal(t, []int{1, 2, 4}, Rotations(5))
	assert.Equal(t, []int{1, 2, 4, 8}, Rotations(16))
}

func TestLogitsMatchPlaintext(t *testing.T) {
	for _, sizes := range [][]int{{6, 3}, {9, 5, 4}, {7, 8, 6, 3}} {
		rng := rand.New(rand.NewSource(uint64(len(sizes))))
		layers := randomLayers(rng, sizes)
		server, client, err := Partition(testContext(t), layers)
		require.NoError(t, err)
		server.SetParallel(parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1})

		X := randomInputs(rng, 4, sizes[0])
		want, err := m.Forward(layers, X)
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			ct, err := client.Encrypt(mat.Row(nil, i, X))
			require.NoError(t, err)
			cts, err := server.Forward(ct)
			require.NoError(t, err)
			require.Len(t, cts, sizes[1])

			got, err := client.Logits(cts)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want.RawRowView(i), got, 1e-3, "sizes %v row %d", sizes, i)
		}
	}
}

func TestPredictAllAgreesWithNetwork(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	layers := randomLayers(rng, []int{10, 6, 4})
	net, err := m.FromWeights(layers, nil)
	require.NoError(t, err)

	X := randomInputs(rng, 12, 10)
	want, err := net.Predict(X)
	require.NoError(t, err)

	server, client, err := Partition(testContext(t), layers)
	require.NoError(t, err)
	got, err := PredictAll(client, server, X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPredictOverProtocol(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	layers := randomLayers(rng, []int{8, 5, 3})
	server, client, err := Partition(testContext(t), layers)
	require.NoError(t, err)

	toServer, clientOut := io.Pipe()
	toClient, serverOut := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- Serve(NewProtocol(toServer, serverOut), server)
	}()

	remote := NewRemote(NewProtocol(toClient, clientOut))
	X := randomInputs(rng, 5, 8)
	got, err := PredictAll(client, remote, X)
	require.NoError(t, err)
	require.NoError(t, remote.Close())
	require.NoError(t, <-done)

	local, err := PredictAll(client, server, X)
	require.NoError(t, err)
	assert.Equal(t, local, got)
}

func TestShapeErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	_, client, err := Partition(testContext(t), randomLayers(rng, []int{4, 2}))
	require.NoError(t, err)

	_, err = client.Encrypt([]float64{1, 2, 3})
	assert.ErrorIs(t, err, m.ErrShapeMismatch)

	_, _, err = Partition(testContext(t), nil)
	assert.Error(t, err)

	bad := m.LayerParams{W: mat.NewDense(3, 4, nil), B: mat.NewVecDense(2, nil)}
	_, err = NewServer(bad, testContext(t).GenServerKit(nil))
	assert.ErrorIs(t, err, m.ErrShapeMismatch)
}

func TestServeLayerWithExchangedKeys(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	layers := randomLayers(rng, []int{6, 4, 3})
	he := testContext(t)
	client := NewClient(he, 6, layers[1:])

	toServer, clientOut := io.Pipe()
	toClient, serverOut := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- ServeLayer(NewProtocol(toServer, serverOut), layers[0])
	}()

	remote, err := Connect(NewProtocol(toClient, clientOut), client)
	require.NoError(t, err)

	X := randomInputs(rng, 3, 6)
	want, err := m.Forward(layers, X)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		ct, err := client.Encrypt(X.RawRowView(i))
		require.NoError(t, err)
		cts, err := remote.Forward(ct)
		require.NoError(t, err)
		got, err := client.Logits(cts)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want.RawRowView(i), got, 1e-3)
	}
	require.NoError(t, remote.Close())
	require.NoError(t, <-done)
}
