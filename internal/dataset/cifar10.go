package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CIFAR-10 binary layout: each record is one label byte followed by
// 32*32 red, 32*32 green and 32*32 blue bytes.
const (
	cifarSide    = 32
	cifarPlane   = cifarSide * cifarSide
	cifarClasses = 10
	cifarRecord  = 1 + 3*cifarPlane
)

// CIFAR10Classes are the class names in label order.
var CIFAR10Classes = []string{
	"airplane", "automobile", "bird", "cat", "deer",
	"dog", "frog", "horse", "ship", "truck",
}

// CIFAR10Geometry is the stored image geometry of CIFAR-10.
var CIFAR10Geometry = Geometry{Height: cifarSide, Width: cifarSide, Channels: 3}

// Split holds raw HWC images and labels for one partition.
type Split struct {
	Images   [][]uint8
	Labels   []int64
	Geometry Geometry
}

// Len returns the number of samples in the split.
func (s Split) Len() int {
	return len(s.Images)
}

// LoadCIFAR10 reads data_batch_1..5.bin as the training split and
// test_batch.bin as the test split from dir.
func LoadCIFAR10(dir string) (train, test Split, err error) {
	train = Split{Geometry: CIFAR10Geometry}
	for i := 1; i <= 5; i++ {
		if err := readCIFARFile(filepath.Join(dir, fmt.Sprintf("data_batch_%d.bin", i)), &train); err != nil {
			return Split{}, Split{}, err
		}
	}
	test = Split{Geometry: CIFAR10Geometry}
	if err := readCIFARFile(filepath.Join(dir, "test_batch.bin"), &test); err != nil {
		return Split{}, Split{}, err
	}
	return train, test, nil
}

func readCIFARFile(path string, dst *Split) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open cifar batch: %w", err)
	}
	defer f.Close()

	if err := ReadCIFARBatch(bufio.NewReader(f), dst); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadCIFARBatch appends every record in r to dst, converting planar RGB to
// HWC. A trailing partial record or a label above 9 is an ErrInvalidRecord.
func ReadCIFARBatch(r io.Reader, dst *Split) error {
	record := make([]byte, cifarRecord)
	for n := 0; ; n++ {
		_, err := io.ReadFull(r, record)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: record %d truncated", ErrInvalidRecord, n)
		}
		if err != nil {
			return fmt.Errorf("read record %d: %w", n, err)
		}

		label := record[0]
		if label >= cifarClasses {
			return fmt.Errorf("%w: record %d has label %d", ErrInvalidRecord, n, label)
		}

		img := make([]uint8, 3*cifarPlane)
		for p := 0; p < cifarPlane; p++ {
			img[3*p] = record[1+p]
			img[3*p+1] = record[1+cifarPlane+p]
			img[3*p+2] = record[1+2*cifarPlane+p]
		}
		dst.Images = append(dst.Images, img)
		dst.Labels = append(dst.Labels, int64(label))
	}
}
