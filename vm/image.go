package vm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Compiled images
// ---------------------------------------------------------------------------

// ImageVersion is the current image format version.
const ImageVersion = 1

// ImageExt is the conventional file extension for encoded images.
const ImageExt = ".nqc"

// imageMagic prefixes every encoded image.
var imageMagic = []byte("NQC\x00")

// ErrBadMagic is returned when data does not start with the image magic.
var ErrBadMagic = errors.New("not an nq image")

// Image is a compiled program together with the metadata needed to tell
// where it came from.
type Image struct {
	Version    int           `cbor:"1,keyasint"`
	ID         string        `cbor:"2,keyasint"`
	Source     string        `cbor:"3,keyasint,omitempty"`
	Vocabulary string        `cbor:"4,keyasint,omitempty"`
	Code       []Instruction `cbor:"5,keyasint"`
}

// NewImage wraps code in an image with a fresh ID.
func NewImage(source, vocabulary string, code []Instruction) *Image {
	return &Image{
		Version:    ImageVersion,
		ID:         uuid.NewString(),
		Source:     source,
		Vocabulary: vocabulary,
		Code:       code,
	}
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalImage serializes an image. Encoding is canonical, so equal images
// encode to equal bytes.
func MarshalImage(img *Image) ([]byte, error) {
	body, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("vm: marshal image: %w", err)
	}
	return append(append([]byte(nil), imageMagic...), body...), nil
}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return bytes.HasPrefix(data, imageMagic)
}

// UnmarshalImage decodes and verifies an image.
func UnmarshalImage(data []byte) (*Image, error) {
	if !IsImage(data) {
		return nil, ErrBadMagic
	}
	var img Image
	if err := cbor.Unmarshal(data[len(imageMagic):], &img); err != nil {
		return nil, fmt.Errorf("vm: unmarshal image: %w", err)
	}
	if err := img.Verify(); err != nil {
		return nil, err
	}
	return &img, nil
}

// Verify checks the version, the ID and the static shape of the code: every
// opcode is known and every Case target lies within its own vector.
func (img *Image) Verify() error {
	if img.Version != ImageVersion {
		return fmt.Errorf("vm: unsupported image version %d", img.Version)
	}
	if _, err := uuid.Parse(img.ID); err != nil {
		return fmt.Errorf("vm: bad image id: %w", err)
	}
	return verifyCode(img.Code)
}

func verifyCode(code []Instruction) error {
	for i, in := range code {
		if _, ok := opcodeTable[in.Op]; !ok {
			return newFault(ShapeInvariant, "unknown opcode 0x%02x", byte(in.Op)).at(i, in)
		}
		if in.Op == OpCase && (in.Target < 0 || in.Target > len(code)) {
			return newFault(ShapeInvariant, "case target %d outside vector of length %d", in.Target, len(code)).at(i, in)
		}
		if in.Op == OpJump && in.Target < 0 {
			return newFault(ShapeInvariant, "negative target %d", in.Target).at(i, in)
		}
		if err := verifyCode(in.Code); err != nil {
			return err
		}
		for _, p := range in.Patterns {
			if err := verifyCode(p.Code); err != nil {
				return err
			}
		}
	}
	return nil
}
