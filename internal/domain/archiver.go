package domain

type Archiver interface {
	Archive(rawPath string, data []byte, archivePath string) error
	Extension() string
}
