// Package filestore 基于文件系统的章节目录存储
package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/repository"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
)

// Store 每部小说一个目录，目录文档与架构文档各一个文件
type Store struct {
	fs               afero.Fs
	dataDir          string
	directoryFile    string
	architectureFile string
}

var _ repository.BlueprintRepository = (*Store)(nil)

// NewStore 创建文件存储
func NewStore(fs afero.Fs, cfg *config.BlueprintConfig) *Store {
	return &Store{
		fs:               fs,
		dataDir:          cfg.DataDir,
		directoryFile:    cfg.DirectoryFile,
		architectureFile: cfg.ArchitectureFile,
	}
}

// NewOsStore 使用本地文件系统
func NewOsStore(cfg *config.BlueprintConfig) *Store {
	return NewStore(afero.NewOsFs(), cfg)
}

// Load 读取目录文本，不存在时返回空字符串
func (s *Store) Load(ctx context.Context, novelID string) (string, error) {
	return s.read(ctx, novelID, s.directoryFile)
}

// LoadArchitecture 读取小说架构文本
func (s *Store) LoadArchitecture(ctx context.Context, novelID string) (string, error) {
	return s.read(ctx, novelID, s.architectureFile)
}

// SaveArchitecture 写入小说架构文本
func (s *Store) SaveArchitecture(ctx context.Context, novelID, text string) error {
	return s.write(ctx, novelID, s.architectureFile, text)
}

// Save 先写临时文件再重命名，读者不会看到写了一半的目录
func (s *Store) Save(ctx context.Context, novelID, text string) error {
	return s.write(ctx, novelID, s.directoryFile, text)
}

// Path 目录文档的路径
func (s *Store) Path(novelID string) (string, error) {
	dir, err := s.novelDir(novelID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.directoryFile), nil
}

func (s *Store) novelDir(novelID string) (string, error) {
	id := strings.TrimSpace(novelID)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", apperrors.ErrInvalidParam.WithDetail("invalid novel id: " + novelID)
	}
	return filepath.Join(s.dataDir, id), nil
}

func (s *Store) read(ctx context.Context, novelID, name string) (string, error) {
	dir, err := s.novelDir(novelID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		logger.Error(ctx, "failed to read blueprint file", err, "path", path)
		return "", apperrors.ErrStorage.WithDetail(path).WithError(err)
	}
	return string(data), nil
}

func (s *Store) write(ctx context.Context, novelID, name, text string) error {
	dir, err := s.novelDir(novelID)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return apperrors.ErrStorage.WithDetail(dir).WithError(err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+name+".*.tmp")
	if err != nil {
		return apperrors.ErrStorage.WithDetail(path).WithError(err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = s.fs.Remove(tmpName) }

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperrors.ErrStorage.WithDetail(path).WithError(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperrors.ErrStorage.WithDetail(path).WithError(err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return apperrors.ErrStorage.WithDetail(path).WithError(err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		cleanup()
		logger.Error(ctx, "failed to replace blueprint file", err, "path", path)
		return apperrors.ErrStorage.WithDetail(path).WithError(err)
	}
	logger.Debug(ctx, "blueprint file saved", "path", path, "bytes", len(text))
	return nil
}
