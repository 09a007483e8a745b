package block

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"
)

// FetchCatalog скачивает файл каталога из src (локальный путь, http(s), git::, s3:: ...)
// в dst. Поддерживаются все схемы go-getter.
func FetchCatalog(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("ошибка создания директории для каталога: %w", err)
	}

	pwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("ошибка определения рабочей директории: %w", err)
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("ошибка загрузки каталога из %s: %w", src, err)
	}
	return nil
}
