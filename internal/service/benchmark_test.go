package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/testutil"
)

// BenchmarkFromDirectory_Cold benchmarks a resolution with a fresh cache.
func BenchmarkFromDirectory_Cold(b *testing.B) {
	fs := testutil.NewFs(b, testutil.CompareFixture())
	svc := NewPrecompileService(fs, nil)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := svc.FromDirectory(ctx, testutil.CompareDir, nil); err != nil {
			b.Fatalf("FromDirectory failed: %v", err)
		}
	}
}

// BenchmarkFromDirectory_Warm benchmarks a resolution served from a shared cache.
func BenchmarkFromDirectory_Warm(b *testing.B) {
	fs := testutil.NewFs(b, testutil.CompareFixture())
	svc := NewPrecompileService(fs, nil)
	shared := PrepareCache()
	ctx := context.Background()

	if _, err := svc.FromDirectory(ctx, testutil.CompareDir, shared); err != nil {
		b.Fatalf("FromDirectory failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := svc.FromDirectory(ctx, testutil.CompareDir, shared); err != nil {
			b.Fatalf("FromDirectory failed: %v", err)
		}
	}
}

// BenchmarkGenerateModule_Large benchmarks rendering a chain of 100 layers.
func BenchmarkGenerateModule_Large(b *testing.B) {
	files := map[string]string{
		"/big/node_modules/plugin/index.js": "module.exports = {}\n",
	}
	for i := 0; i < 100; i++ {
		extends := ""
		if i < 99 {
			extends = fmt.Sprintf("extends: './layer%d.json5',", i+1)
		}
		files[fmt.Sprintf("/big/layer%d.json5", i)] = fmt.Sprintf(
			`{%s plugins: [['plugin', {n: %d}]], env: {prod: {opt%d: true}}}`, extends, i, i)
	}
	files["/big/.babelrc"] = `{extends: './layer0.json5'}`

	fs := testutil.NewFs(b, files)
	res, err := NewPrecompileService(fs, nil).FromDirectory(context.Background(), "/big", nil)
	if err != nil {
		b.Fatalf("FromDirectory failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		// A new Result renders again instead of returning the memoized text.
		r := &Result{chain: res.Chain(), tree: res.Tree()}
		if r.GenerateModule() == "" {
			b.Fatal("empty module")
		}
	}
}
