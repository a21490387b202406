package compressor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yeka/zip"
)

const ZipExtension = "zip"

type Logger interface {
	Warnf(template string, args ...interface{})
}

// ZipArchiver writes single entry, deflate compressed zip archives encrypted
// with WinZip AES-256.
type ZipArchiver struct {
	passphrase string
	logger     Logger
}

func NewZip(passphrase string, logger Logger) *ZipArchiver {
	return &ZipArchiver{passphrase: passphrase, logger: logger}
}

func (z *ZipArchiver) Extension() string {
	return ZipExtension
}

// Archive writes data to rawPath, packs it into archivePath under the raw
// file's base name and removes the raw file. An existing archive is
// overwritten. On failure no archive is left behind.
func (z *ZipArchiver) Archive(rawPath string, data []byte, archivePath string) error {
	if err := os.WriteFile(rawPath, data, 0644); err != nil {
		_ = os.Remove(rawPath)
		return fmt.Errorf("failed to write raw file: %w", err)
	}

	if err := z.pack(rawPath, archivePath); err != nil {
		_ = os.Remove(archivePath)
		z.removeRaw(rawPath)
		return err
	}

	z.removeRaw(rawPath)
	return nil
}

func (z *ZipArchiver) pack(rawPath, archivePath string) error {
	source, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("failed to open raw file: %w", err)
	}
	defer source.Close()

	dest, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zipWriter := zip.NewWriter(dest)
	entry, err := zipWriter.Encrypt(filepath.Base(rawPath), z.passphrase, zip.AES256Encryption)
	if err != nil {
		zipWriter.Close()
		dest.Close()
		return fmt.Errorf("failed to create archive entry: %w", err)
	}

	if _, err := io.Copy(entry, source); err != nil {
		zipWriter.Close()
		dest.Close()
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		dest.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	if err := dest.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}

	return nil
}

func (z *ZipArchiver) removeRaw(rawPath string) {
	if err := os.Remove(rawPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		z.logger.Warnf("Failed to remove raw dump %s: %v", rawPath, err)
	}
}

// Extract decrypts the single entry of an archive written by Archive. The
// backup flow never calls it; only tests read archives back, and restores are
// done with any unzip tool that supports AES.
func (z *ZipArchiver) Extract(archivePath string) (string, []byte, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	if len(reader.File) != 1 {
		return "", nil, fmt.Errorf("expected a single entry, found %d", len(reader.File))
	}

	file := reader.File[0]
	if file.IsEncrypted() {
		file.SetPassword(z.passphrase)
	}

	rc, err := file.Open()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decompress: %w", err)
	}

	return file.Name, data, nil
}
