package compression

import (
	"strings"
	"testing"
)

func BenchmarkCompressionSnappy(b *testing.B) {
	data := []byte(strings.Repeat("benchmark data for compression testing ", 100))
	compressor, _ := NewCompressor(SnappyConfig())
	defer compressor.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Compress(data)
	}
}

func BenchmarkCompressionZstd(b *testing.B) {
	data := []byte(strings.Repeat("benchmark data for compression testing ", 100))
	compressor, _ := NewCompressor(ZstdConfig(3))
	defer compressor.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Compress(data)
	}
}

func BenchmarkCompressionGzip(b *testing.B) {
	data := []byte(strings.Repeat("benchmark data for compression testing ", 100))
	compressor, _ := NewCompressor(GzipConfig(6))
	defer compressor.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Compress(data)
	}
}

func BenchmarkDecompressionSnappy(b *testing.B) {
	data := []byte(strings.Repeat("benchmark data for decompression testing ", 100))
	compressor, _ := NewCompressor(SnappyConfig())
	defer compressor.Close()
	compressed, _ := compressor.Compress(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Decompress(compressed)
	}
}

func BenchmarkDecompressionZstd(b *testing.B) {
	data := []byte(strings.Repeat("benchmark data for decompression testing ", 100))
	compressor, _ := NewCompressor(ZstdConfig(3))
	defer compressor.Close()
	compressed, _ := compressor.Compress(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Decompress(compressed)
	}
}

func BenchmarkDecompressionGzip(b *testing.B) {
	data := []byte(strings.Repeat("benchmark data for decompression testing ", 100))
	compressor, _ := NewCompressor(GzipConfig(6))
	defer compressor.Close()
	compressed, _ := compressor.Compress(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Decompress(compressed)
	}
}

func BenchmarkZstdLevel1(b *testing.B) {
	data := []byte(strings.Repeat("compression level benchmark ", 200))
	compressor, _ := NewCompressor(ZstdConfig(1))
	defer compressor.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Compress(data)
	}
}

func BenchmarkZstdLevel3(b *testing.B) {
	data := []byte(strings.Repeat("compression level benchmark ", 200))
	compressor, _ := NewCompressor(ZstdConfig(3))
	defer compressor.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Compress(data)
	}
}

func BenchmarkZstdLevel9(b *testing.B) {
	data := []byte(strings.Repeat("compression level benchmark ", 200))
	compressor, _ := NewCompressor(ZstdConfig(9))
	defer compressor.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compressor.Compress(data)
	}
}

// BenchmarkCompareAlgorithmsCompress benchmarks every algorithm against the
// same payload, the shape of data an archive snapshot actually compresses:
// repeated JSON records from terminal transaction rows.
func BenchmarkCompareAlgorithmsCompress(b *testing.B) {
	data := []byte(strings.Repeat(`{"transaction_id":"tx-1","status":"committed","amount":"50.0000"}`, 100))

	benchmarks := []struct {
		name   string
		config *Config
	}{
		{"Snappy", SnappyConfig()},
		{"Zstd-1", ZstdConfig(1)},
		{"Zstd-3", ZstdConfig(3)},
		{"Zstd-9", ZstdConfig(9)},
		{"Gzip-1", GzipConfig(1)},
		{"Gzip-6", GzipConfig(6)},
		{"Gzip-9", GzipConfig(9)},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			compressor, _ := NewCompressor(bm.config)
			defer compressor.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = compressor.Compress(data)
			}
		})
	}
}
