package content

import "context"

// MediaAsset - результат загрузки файла во внешнее хранилище.
type MediaAsset struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// MediaStore - внешний сервис хранения медиа. Ядро хранит только URL и
// длительность, но никогда сами байты.
type MediaStore interface {
	// Upload загружает локальный временный файл и возвращает его постоянный URL.
	Upload(ctx context.Context, localPath string, kind string) (MediaAsset, error)
}
