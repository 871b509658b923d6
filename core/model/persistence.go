package model

import (
	"bytes"
	"encoding/gob"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// Marshal は値を gob のバイト列に変換する
//
// Step などインターフェース値の具象型は事前に gob.Register されている必要がある。
// 各パッケージは init で自身の型を登録する。
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrap(err, "failed to encode model")
	}
	return buf.Bytes(), nil
}

// Unmarshal は Marshal で作成したバイト列を v（ポインタ）に復元する
func Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
