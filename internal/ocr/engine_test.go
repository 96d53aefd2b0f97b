package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner answers by binary name and records every invocation.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]string
	errs    map[string]error
	onRun   func(name string, args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(name, args)
	}
	key := name
	if len(args) > 0 && args[len(args)-1] == "tsv" {
		key = name + ":tsv"
	}
	if err := f.errs[key]; err != nil {
		return nil, []byte("stderr: " + key), err
	}
	return []byte(f.outputs[key]), nil, nil
}

func TestPDFPages(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{"pdftotext": "page one\fpage two\f\fpage four\f"},
		onRun: func(name string, args []string) {
			data, err := os.ReadFile(args[len(args)-2])
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.7", string(data))
		},
	}
	e := NewEngine(Config{}, nil, WithRunner(r))

	pages, err := e.PDFPages(context.Background(), []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, []string{"page one", "page two", "", "page four"}, pages)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "pdftotext", r.calls[0].name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, r.calls[0].args[:5])
	assert.Equal(t, "-", r.calls[0].args[len(r.calls[0].args)-1])

	_, statErr := os.Stat(r.calls[0].args[5])
	assert.True(t, os.IsNotExist(statErr), "temp pdf must be removed")
}

func TestPDFPagesMaxPages(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"pdftotext": "a\fb\fc"}}
	e := NewEngine(Config{MaxPages: 2}, nil, WithRunner(r))
	pages, err := e.PDFPages(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, pages)
}

func TestPDFPagesFailure(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{"pdftotext": errors.New("exit status 1")}}
	e := NewEngine(Config{}, nil, WithRunner(r))
	_, err := e.PDFPages(context.Background(), []byte("garbage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext")
	assert.Contains(t, err.Error(), "stderr: pdftotext")
}

func TestImageText(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"tesseract": "Service  Agreement\r\n\t dated 01/02/2024\n-----\n"}}
	e := NewEngine(Config{TessdataDir: "/usr/share/tessdata"}, nil, WithRunner(r))

	res, err := e.ImageText(context.Background(), []byte("png-bytes"), ".PNG")
	require.NoError(t, err)
	assert.Equal(t, "Service Agreement\n dated 01/02/2024", res.Text)
	assert.Equal(t, "eng", res.Language)
	assert.InDelta(t, 0.55, res.Confidence, 0.001)

	require.Len(t, r.calls, 1)
	args := r.calls[0].args
	assert.True(t, strings.HasSuffix(args[0], ".png"))
	assert.Equal(t, []string{"stdout", "-l", "eng", "--tessdata-dir", "/usr/share/tessdata"}, args[1:])
}

func TestImageTextTSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tService\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tAgreement\n"
	r := &fakeRunner{outputs: map[string]string{"tesseract": "hello", "tesseract:tsv": tsv}}
	e := NewEngine(Config{EnableTSVConfidence: true}, nil, WithRunner(r))

	res, err := e.ImageText(context.Background(), []byte("img"), "jpg")
	require.NoError(t, err)
	// 0.7 * mean(0.9, 0.7) + 0.3 * base heuristic 0.2
	assert.InDelta(t, 0.62, res.Confidence, 0.001)
}

func TestImageTextFailure(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{"tesseract": errors.New("exit status 1")}}
	e := NewEngine(Config{}, nil, WithRunner(r))
	_, err := e.ImageText(context.Background(), []byte("img"), "png")
	assert.ErrorContains(t, err, "tesseract")
}

func TestImageTextHEICCachesConversion(t *testing.T) {
	cacheDir := t.TempDir()
	r := &fakeRunner{
		outputs: map[string]string{"tesseract": "converted"},
		onRun: func(name string, args []string) {
			if name == "magick" {
				require.NoError(t, os.WriteFile(args[1], []byte("png"), 0o600))
			}
		},
	}
	e := NewEngine(Config{HeicConverter: "magick", ArtifactCacheDir: cacheDir}, nil, WithRunner(r))
	ctx := WithContentHash(context.Background(), "abc123")

	res, err := e.ImageText(ctx, []byte("heic"), "heic")
	require.NoError(t, err)
	assert.Equal(t, "converted", res.Text)

	cached := filepath.Join(cacheDir, "abc123.png")
	assert.FileExists(t, cached)
	require.Len(t, r.calls, 2)
	assert.Equal(t, cached, r.calls[1].args[0])

	// second call reuses the cached PNG without converting again
	_, err = e.ImageText(ctx, []byte("heic"), "heic")
	require.NoError(t, err)
	require.Len(t, r.calls, 3)
	assert.Equal(t, "tesseract", r.calls[2].name)
}

func TestImageTextHEICUnknownConverter(t *testing.T) {
	e := NewEngine(Config{HeicConverter: "gimp"}, nil, WithRunner(&fakeRunner{}))
	_, err := e.ImageText(context.Background(), []byte("heic"), "heif")
	assert.ErrorContains(t, err, "HEIC not supported")
}

func TestNormalize(t *testing.T) {
	in := "Line one\r\nLine\t\ttwo   spaced  \n\n\n\nLine 05 three\n"
	assert.Equal(t, "Line one\nLine two spaced\n\nLine 05 three", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestNormalizeTextLayerGlyphs(t *testing.T) {
	in := "This Agreement includes auto-\nrenewal, de\ufb01ned by the \u201cParties\u201d.\nFee: 2024-\n05"
	assert.Equal(t, "This Agreement includes auto-renewal, defined by the \"Parties\".\nFee: 2024-\n05", Normalize(in))
	assert.Equal(t, "Acme Ltd", Normalize("Acme\u00a0Ltd"))
}

func TestHeuristicConfidence(t *testing.T) {
	assert.InDelta(t, 0.2, heuristicConfidence("zzz"), 0.001)
	long := "This Agreement between the parties starts 01/02/2024 with a fee of $100 " + strings.Repeat("x", 120)
	assert.InDelta(t, 0.8, heuristicConfidence(long), 0.001)
}

func TestExecRunnerMissingTool(t *testing.T) {
	_, _, err := ExecRunner{}.Run(context.Background(), "ct-no-such-binary-7f3a", nil, "--version")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolMissing)
}
