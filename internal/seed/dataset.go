package seed

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"

	"github.com/xenking/pricewatch/db"
	"github.com/xenking/pricewatch/internal/domain/product"
	"github.com/xenking/pricewatch/internal/wire"
)

// Sample is one product of a seed dataset with the prices to add under it.
type Sample struct {
	product.Input
	Prices []wire.PriceInput
}

// DefaultDataset returns the embedded sample catalog.
func DefaultDataset() ([]Sample, error) {
	return DecodeDataset(bytes.NewReader(db.SampleCatalog))
}

// LoadDataset reads a dataset file. Files ending in .gz are gunzipped. An
// empty path selects the embedded sample catalog.
func LoadDataset(path string) ([]Sample, error) {
	if path == "" {
		return DefaultDataset()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	samples, err := DecodeDataset(r)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}
	return samples, nil
}

// DecodeDataset reads a JSON array of products, each carrying a "prices"
// array of {"store","price","inStock"} objects.
func DecodeDataset(r io.Reader) ([]Sample, error) {
	var samples []Sample
	err := jx.Decode(r, 32*1024).Arr(func(d *jx.Decoder) error {
		s, err := decodeSample(d)
		if err != nil {
			return errors.Wrapf(err, "sample %d", len(samples)+1)
		}
		samples = append(samples, s)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode dataset")
	}
	return samples, nil
}

func decodeSample(d *jx.Decoder) (Sample, error) {
	raw, err := d.Raw()
	if err != nil {
		return Sample{}, err
	}

	in, err := wire.DecodeInput(jx.DecodeBytes(raw))
	if err != nil {
		return Sample{}, err
	}
	s := Sample{Input: in}

	err = jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if key != "prices" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			pi, err := wire.DecodePriceInput(d)
			if err != nil {
				return err
			}
			if pi.Store == "" {
				return errors.Errorf("price %d: store is required", len(s.Prices)+1)
			}
			s.Prices = append(s.Prices, pi)
			return nil
		})
	})
	if err != nil {
		return Sample{}, err
	}
	if s.Name == "" {
		return Sample{}, errors.New("name is required")
	}
	return s, nil
}
