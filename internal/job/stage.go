package job

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// templateAssets are the extensions bundled for upload.
var templateAssets = map[string]bool{
	".xlsx": true,
	".ttf":  true,
	".key":  true,
	".xlsb": true,
}

// Stage zips every template asset directly under dir.
func Stage(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &StagingError{Dir: dir, Err: err}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.IsDir() || !templateAssets[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		if err := addFile(zw, filepath.Join(dir, e.Name())); err != nil {
			return nil, &StagingError{Dir: dir, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &StagingError{Dir: dir, Err: err}
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
