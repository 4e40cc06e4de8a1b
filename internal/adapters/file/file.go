package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

// TempPath returns a uniquely named path in the temp directory without
// creating the file. Used for output files an external process will write.
func TempPath(extension string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	return filepath.Join(os.TempDir(), fmt.Sprintf("%s%s", id.String(), extension)), nil
}

// SaveTempFile saves bytes to a uniquely named temp location and returns the path.
func SaveTempFile(data []byte, extension string) (string, error) {
	path, err := TempPath(extension)
	if err != nil {
		return "", err
	}

	log.Debug().Int("bytes", len(data)).Str("extension", extension).Msg("creating temp file")

	f, err := os.Create(path)
	if err != nil {
		err = fmt.Errorf("error creating temp file %w", err)
		log.Error().Err(err).Send()
		return "", err
	}

	defer f.Close()

	if _, err := f.Write(data); err != nil {
		err = fmt.Errorf("error writing temp file %w", err)
		log.Error().Err(err).Send()
		return "", err
	}

	log.Debug().Str("path", f.Name()).Msg("created file")

	return f.Name(), nil
}

// GetTempFile retrieves a temporarily stored file by its path, as returned from SaveTempFile().
func GetTempFile(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("error reading temp file %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	return buf, nil
}

// RemoveTempFile removes a specified temporary file at the given path and logs success or failure.
// Missing files are ignored so cleanup can run unconditionally on paths an
// external process may never have written.
func RemoveTempFile(path string) {
	err := os.Remove(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Warn().Str("path", path).Err(err).Msg("could not clean up temp file")
		return
	}
	log.Debug().Str("path", path).Msg("cleaned up temp file")
}
