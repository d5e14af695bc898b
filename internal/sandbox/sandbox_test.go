package sandbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
	"github.com/patelnilay251/backend-data-forge/internal/figure"
)

const salesCSV = "region,units,price\nnorth,10,2.5\nsouth,20,3.0\neast,15,1.5\nwest,5,4.0\n"

func testSandbox() *Sandbox {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Parse([]byte(salesCSV))
	require.NoError(t, err)
	return ds
}

func TestRunCapturesStdout(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	out, err := sb.Run(context.Background(), "print('hello')\nprint(df.nrow())", ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)

	assert.Equal(t, "hello\n4\n", out.Stdout)
	assert.False(t, out.HasValue)
	assert.Nil(t, out.Figure)
}

func TestRunTrailingExpressionValue(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "arithmetic", code: "1 + 2", want: "3"},
		{name: "frame method", code: "df.ncol()", want: "3"},
		{name: "after statements", code: "x = df.nrow()\nx * 10", want: "40"},
		{name: "string repr", code: "'units'", want: `"units"`},
		{name: "multiline expression", code: "total = df.sum('units')\n(total +\n 0)", want: "50.0"},
		{name: "multibyte text before the expression", code: `z = "éé"; z`, want: `"éé"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := sb.Run(context.Background(), tt.code, ds, Options{TimeLimit: time.Second})
			require.NoError(t, err)
			require.True(t, out.HasValue)
			assert.Equal(t, tt.want, out.Value)
		})
	}
}

func TestRunResultBindingFallback(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	out, err := sb.Run(context.Background(), "result = df.mean('units')", ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)

	require.True(t, out.HasValue)
	assert.Equal(t, "12.5", out.Value)
}

func TestRunNoValueWhenEndingInStatement(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	out, err := sb.Run(context.Background(), "x = 1", ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)
	assert.False(t, out.HasValue)
}

func TestRunExecutionError(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	_, err := sb.Run(context.Background(), "print('before')\ndf.col('missing')", ds, Options{TimeLimit: time.Second})
	require.ErrorIs(t, err, apperror.ErrExecution)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, `unknown column "missing"`)
	// stdout produced before the failure point is preserved
	assert.Equal(t, "before\n", appErr.Stdout)
}

func TestRunSyntaxErrorIsExecutionError(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	_, err := sb.Run(context.Background(), "def broken(:\n", ds, Options{TimeLimit: time.Second})
	assert.ErrorIs(t, err, apperror.ErrExecution)
}

func TestRunInfiniteLoopTimesOut(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	limit := 100 * time.Millisecond
	start := time.Now()
	_, err := sb.Run(context.Background(), "print('spinning')\nwhile True:\n    pass\n", ds, Options{TimeLimit: limit})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, apperror.ErrTimeout)
	assert.Less(t, elapsed, limit+2*time.Second, "termination must be prompt")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "spinning\n", appErr.Stdout)
}

func TestRunIsDeterministic(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	code := "for r in df.records():\n    print(r['region'], r['units'])\ndf.sum('units')"

	first, err := sb.Run(context.Background(), code, ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)
	second, err := sb.Run(context.Background(), code, ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)

	assert.Equal(t, first.Stdout, second.Stdout)
	assert.Equal(t, first.Value, second.Value)
}

func TestRunScopeDoesNotLeakBetweenCalls(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	_, err := sb.Run(context.Background(), "leak = 42", ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)

	_, err = sb.Run(context.Background(), "print(leak)", ds, Options{TimeLimit: time.Second})
	assert.ErrorIs(t, err, apperror.ErrExecution)
}

func TestRunMutationsDoNotReachDataset(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	out, err := sb.Run(context.Background(), "df = df.filter('units', '>', 10)\ndf.nrow()", ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "2", out.Value)

	// The stored dataset is untouched by the snippet's rebinding.
	assert.Equal(t, 4, ds.Rows())
}

func TestRunAmbientCapabilitiesAbsent(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	for _, symbol := range []string{"open", "os", "exec", "load_module"} {
		_, err := sb.Run(context.Background(), symbol+"('x')", ds, Options{TimeLimit: time.Second})
		assert.ErrorIs(t, err, apperror.ErrExecution, "symbol %q must not be in scope", symbol)
	}
}

func TestRunPlottingDisabledByDefault(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	_, err := sb.Run(context.Background(), "plot.bar(df, x='region', y='units')", ds, Options{TimeLimit: time.Second})
	assert.ErrorIs(t, err, apperror.ErrExecution)
}

func TestRunFigureSlot(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	out, err := sb.Run(context.Background(),
		"plot.bar(df, x='region', y='units', title='Units')",
		ds, Options{TimeLimit: time.Second, Plotting: true})
	require.NoError(t, err)

	require.NotNil(t, out.Figure)
	assert.Equal(t, figure.KindBar, out.Figure.Kind)
	assert.Equal(t, "Units", out.Figure.Title)
	assert.Equal(t, []string{"north", "south", "east", "west"}, out.Figure.Labels)
	assert.Equal(t, []float64{10, 20, 15, 5}, out.Figure.Y)

	// The trailing plot call also surfaces as the run's value.
	assert.True(t, out.HasValue)
	assert.Equal(t, "figure(bar)", out.Value)
}

func TestRunLastPlotCallWins(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	out, err := sb.Run(context.Background(),
		"plot.bar(df, x='region', y='units')\nf = plot.hist(df, column='price', bins=4)",
		ds, Options{TimeLimit: time.Second, Plotting: true})
	require.NoError(t, err)

	require.NotNil(t, out.Figure)
	assert.Equal(t, figure.KindHistogram, out.Figure.Kind)
	assert.Equal(t, 4, out.Figure.Bins)
}

func TestRunMathAndJSONModules(t *testing.T) {
	sb := testSandbox()
	ds := testDataset(t)

	out, err := sb.Run(context.Background(), "json.encode({'n': int(math.sqrt(16))})", ds, Options{TimeLimit: time.Second})
	require.NoError(t, err)
	require.True(t, out.HasValue)
	assert.Equal(t, `"{\"n\":4}"`, out.Value)
}

func TestSplitTrailingExpr(t *testing.T) {
	tests := []struct {
		name         string
		src          string
		wantPrefix   string
		wantTrailing string
	}{
		{name: "only expression", src: "1 + 2", wantPrefix: "", wantTrailing: "1 + 2"},
		{name: "statement then expression", src: "x = 1\nx + 1", wantPrefix: "x = 1\n", wantTrailing: "x + 1"},
		{name: "ends in assignment", src: "x = 1\ny = 2", wantPrefix: "x = 1\ny = 2", wantTrailing: ""},
		{name: "multibyte runes on the final line", src: `z = "éé"; z`, wantPrefix: `z = "éé"; `, wantTrailing: "z"},
		{name: "empty", src: "", wantPrefix: "", wantTrailing: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, trailing, err := splitTrailingExpr(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, prefix)
			assert.Equal(t, tt.wantTrailing, trailing)
		})
	}
}
