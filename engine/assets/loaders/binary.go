package loaders

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spaghettifunk/texture-renderer/engine/resources"
)

// SPIR-V modules start with this word.
const spirvMagic uint32 = 0x07230203

type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	code, err := BytesToBytecode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &resources.Resource{
		ID:       uuid.New(),
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     resources.ResourceTypeBinary,
		DataSize: uint64(len(buf)),
		Data:     code,
	}, nil
}

func (bl *BinaryLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

// BytesToBytecode reads little endian SPIR-V words and checks the magic number.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a positive multiple of 4", len(b))
	}
	byteCode := make([]uint32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, byteCode); err != nil {
		return nil, err
	}
	if byteCode[0] != spirvMagic {
		return nil, fmt.Errorf("bad SPIR-V magic %#08x", byteCode[0])
	}
	return byteCode, nil
}
