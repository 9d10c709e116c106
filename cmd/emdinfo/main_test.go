package main

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/robert-malhotra/go-emd/emd"
)

// run executes emdinfo with a config path that does not exist, so the
// built-in defaults apply unless extra flags override them.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	base := []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--no-color"}
	cmd.SetArgs(append(base, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func grayTIFF(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			img.SetGray(x, y, color.Gray{Y: uint8(16*y + x)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))
	path := filepath.Join(t.TempDir(), "gray.tif")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestTree(t *testing.T) {
	path := grayTIFF(t)

	out, _, err := run(t, "tree", path)
	require.NoError(t, err)
	assert.Contains(t, out, "tiff_data  4 children")
	assert.Contains(t, out, "emd_group_type  1")
	assert.Contains(t, out, "units  [px]")
	assert.Contains(t, out, "1 data groups, 0 warnings")
	assert.Contains(t, out, "[0] /data/tiff_data  uint8 4 x 3  12 B, loaded")

	out, _, err = run(t, "tree", "--no-attrs", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "emd_group_type")
	assert.Contains(t, out, "dim2  3")
}

func TestFrame(t *testing.T) {
	path := grayTIFF(t)
	raw := filepath.Join(t.TempDir(), "frame.raw")

	out, _, err := run(t, "frame", "--slice", "h,v", "--raw", raw, path)
	require.NoError(t, err)
	assert.Contains(t, out, "group   /data/tiff_data")
	assert.Contains(t, out, "frame   4 x 3 at element 0")
	assert.Contains(t, out, "wrote   "+raw+" (12 B)")

	data, err := os.ReadFile(raw)
	require.NoError(t, err)
	assert.Len(t, data, 12)

	_, _, err = run(t, "frame", "--slice", "h,q", path)
	assert.ErrorContains(t, err, `"q" is not h, v or an index`)

	_, _, err = run(t, "frame", "--group", "3", path)
	assert.ErrorContains(t, err, "data group 3 out of range")
}

func TestConvert(t *testing.T) {
	path := grayTIFF(t)
	out := filepath.Join(t.TempDir(), "gray.emd")

	stdout, _, err := run(t, "convert", path, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 data groups, 12 B of data")

	stdout, _, err = run(t, "tree", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "[0] /data/tiff_data  uint8 4 x 3  12 B, unloaded")

	stdout, _, err = run(t, "frame", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "frame   4 x 3 at element 0")

	_, _, err = run(t, "convert", path, out)
	assert.ErrorContains(t, err, "use --force")

	_, _, err = run(t, "convert", path, filepath.Join(t.TempDir(), "gray.h5"))
	assert.ErrorContains(t, err, "want an .emd extension")

	head, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(head, []byte("\x89HDF\r\n\x1a\n")))
}

func TestConvertBadgerStore(t *testing.T) {
	path := grayTIFF(t)
	cfgPath := filepath.Join(t.TempDir(), "emdinfo.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store: badger\n"), 0o644))
	out := filepath.Join(t.TempDir(), "gray.emd")

	_, _, err := run(t, "--config", cfgPath, "convert", path, out)
	require.NoError(t, err)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	stdout, _, err := run(t, "--config", cfgPath, "frame", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "frame   4 x 3 at element 0")
}

func TestMissingInput(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.emd")
	_, _, err := run(t, "tree", missing)
	assert.ErrorIs(t, err, emd.ErrFileOpenFailed)

	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConfigOverrides(t *testing.T) {
	path := grayTIFF(t)

	_, _, err := run(t, "--memory-limit", "8B", "tree", path)
	assert.ErrorIs(t, err, emd.ErrCapacity)

	_, _, err = run(t, "--memory-limit", "lots", "tree", path)
	assert.ErrorContains(t, err, "--memory-limit")

	_, _, err = run(t, "--log-level", "chatty", "tree", path)
	assert.ErrorContains(t, err, "unknown log_level")

	cfgPath := filepath.Join(t.TempDir(), "emdinfo.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: debug\nsample_size: 10\n"), 0o644))
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--config", cfgPath, "--no-color", "tree", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "configuration loaded")
	assert.Contains(t, errOut.String(), "sample_size=10")
}

func TestMetricsDump(t *testing.T) {
	_, stderr, err := run(t, "--metrics", "tree", grayTIFF(t))
	require.NoError(t, err)
	assert.Contains(t, stderr, "emd_decodes_total{format=tif,outcome=ok} 1")
	assert.Contains(t, stderr, "emd_decode_duration_seconds_count{format=tif} 1")
}

func TestParseSlice(t *testing.T) {
	s, err := parseSlice("H, y ,3")
	require.NoError(t, err)
	assert.Equal(t, emd.Slice{emd.Horizontal, emd.Vertical, 3}, s)

	_, err = parseSlice("h,-1")
	assert.Error(t, err)
}
