package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// InvoiceArchive хранит печатные формы счетов на диске.
type InvoiceArchive struct {
	rootPath string
	maxBytes int64
}

// NewInvoiceArchive создаёт каталог архива.
func NewInvoiceArchive(rootPath string, maxMB int64) (*InvoiceArchive, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	if maxMB <= 0 {
		maxMB = 10
	}
	return &InvoiceArchive{
		rootPath: rootPath,
		maxBytes: maxMB * 1024 * 1024,
	}, nil
}

// Save пишет документ через временный файл и возвращает путь относительно корня.
// Повторное сохранение того же номера перезаписывает файл.
func (a *InvoiceArchive) Save(ctx context.Context, invoiceNumber string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	fileName := sanitizeFilename(invoiceNumber) + ".pdf"
	targetPath := filepath.Join(a.rootPath, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: r, N: a.maxBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > a.maxBytes {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: размер файла превышает лимит %d байт", a.maxBytes)
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", 0, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}
	return fileName, written, nil
}

// SaveBytes - обёртка над Save для уже сформированного документа.
func (a *InvoiceArchive) SaveBytes(ctx context.Context, invoiceNumber string, data []byte) (string, error) {
	path, _, err := a.Save(ctx, invoiceNumber, bytes.NewReader(data))
	return path, err
}

// Delete удаляет документ. Отсутствующий файл не считается ошибкой.
func (a *InvoiceArchive) Delete(ctx context.Context, invoiceNumber string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(a.rootPath, sanitizeFilename(invoiceNumber)+".pdf")
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// sanitizeFilename убирает разделители путей из номера счёта.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "")
	name = filepath.Base(name)
	if name == "" || name == "." {
		name = "invoice"
	}
	return name
}
