package util

import (
	"io"
	"os"
)

func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func CreateFileWithPath(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	return f.Close()
}

// 都是含前不含后的概念
// offset是从0开始的
func ReadFileBySeekStartWithSize(filePath string, offset uint64, size int) ([]byte, error) {
	f, err := os.OpenFile(filePath, os.O_RDONLY, os.ModePerm)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := make([]byte, size)
	if _, err = f.ReadAt(b, int64(offset)); err != nil && err != io.EOF {
		return nil, err
	}
	return b, nil
}

func WriteFileBySeekStart(filePath string, offset uint64, data []byte) error {
	f, err := os.OpenFile(filePath, os.O_RDWR, os.ModePerm)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.WriteAt(data, int64(offset)); err != nil {
		return err
	}
	return nil
}
