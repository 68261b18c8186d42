// Package wire holds the JSON shapes of products and price entries shared by
// the remote store client, the HTTP handlers and seed datasets.
package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricewatch/internal/domain/product"
)

// PriceInput is the body of add and update price entry requests. Store is
// empty when the store comes from the request path.
type PriceInput struct {
	Store   string
	Price   decimal.Decimal
	InStock bool
}

// EncodeInput writes the replaceable product fields as an object.
func EncodeInput(e *jx.Encoder, in product.Input) {
	e.ObjStart()
	encodeInputFields(e, in)
	e.ObjEnd()
}

func encodeInputFields(e *jx.Encoder, in product.Input) {
	e.FieldStart("name")
	e.Str(in.Name)
	e.FieldStart("category")
	e.Str(in.Category)
	e.FieldStart("description")
	e.Str(in.Description)
	e.FieldStart("imageUrl")
	e.Str(in.ImageURL)
	e.FieldStart("tags")
	e.ArrStart()
	for _, tag := range in.Tags {
		e.Str(tag)
	}
	e.ArrEnd()
}

// EncodeProduct writes p as an object.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.UInt64(p.ID)
	encodeInputFields(e, p.Input())
	e.ObjEnd()
}

// EncodeProducts writes products as an array.
func EncodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		EncodeProduct(e, p)
	}
	e.ArrEnd()
}

// EncodePriceEntry writes pe as an object.
func EncodePriceEntry(e *jx.Encoder, pe product.PriceEntry) {
	e.ObjStart()
	e.FieldStart("productId")
	e.UInt64(pe.ProductID)
	encodePriceFields(e, PriceInput{Store: pe.Store, Price: pe.Price, InStock: pe.InStock})
	e.ObjEnd()
}

// EncodePriceEntries writes entries as an array.
func EncodePriceEntries(e *jx.Encoder, entries []product.PriceEntry) {
	e.ArrStart()
	for _, pe := range entries {
		EncodePriceEntry(e, pe)
	}
	e.ArrEnd()
}

// EncodePriceInput writes a price request body. The store field is omitted
// when empty.
func EncodePriceInput(e *jx.Encoder, in PriceInput) {
	e.ObjStart()
	encodePriceFields(e, in)
	e.ObjEnd()
}

func encodePriceFields(e *jx.Encoder, in PriceInput) {
	if in.Store != "" {
		e.FieldStart("store")
		e.Str(in.Store)
	}
	e.FieldStart("price")
	e.Float64(in.Price.InexactFloat64())
	e.FieldStart("inStock")
	e.Bool(in.InStock)
}

// DecodeInput reads the replaceable product fields. Unknown fields, including
// "id", are skipped.
func DecodeInput(d *jx.Decoder) (product.Input, error) {
	p, err := DecodeProduct(d)
	if err != nil {
		return product.Input{}, err
	}
	return p.Input(), nil
}

// DecodeProduct reads a product object.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.UInt64()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "imageUrl":
			p.ImageURL, err = d.Str()
		case "tags":
			p.Tags, err = decodeStrings(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode product")
	}
	return p, nil
}

// DecodeProducts reads an array of products. A JSON null yields an empty
// slice.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	products := []product.Product{}
	if d.Next() == jx.Null {
		return products, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

// DecodePriceInput reads a price request body.
func DecodePriceInput(d *jx.Decoder) (PriceInput, error) {
	pe, err := DecodePriceEntry(d)
	if err != nil {
		return PriceInput{}, err
	}
	return PriceInput{Store: pe.Store, Price: pe.Price, InStock: pe.InStock}, nil
}

// DecodePriceEntry reads a price entry object.
func DecodePriceEntry(d *jx.Decoder) (product.PriceEntry, error) {
	var pe product.PriceEntry
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			pe.ProductID, err = d.UInt64()
		case "store":
			pe.Store, err = d.Str()
		case "price":
			pe.Price, err = decodePrice(d)
		case "inStock":
			pe.InStock, err = d.Bool()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.PriceEntry{}, errors.Wrap(err, "decode price entry")
	}
	return pe, nil
}

// DecodePriceEntries reads an array of price entries.
func DecodePriceEntries(d *jx.Decoder) ([]product.PriceEntry, error) {
	entries := []product.PriceEntry{}
	if d.Next() == jx.Null {
		return entries, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		pe, err := DecodePriceEntry(d)
		if err != nil {
			return err
		}
		entries = append(entries, pe)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode price entries")
	}
	return entries, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	f, err := d.Float64()
	if err != nil {
		return decimal.Zero, err
	}
	price := decimal.NewFromFloat(f)
	if price.IsNegative() {
		return decimal.Zero, errors.Errorf("negative price %s", price)
	}
	return price, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	if d.Next() == jx.Null {
		return out, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
