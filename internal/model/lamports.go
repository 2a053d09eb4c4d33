package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL 1 SOL = 1e9 lamports
const LamportsPerSOL = 1_000_000_000

// ErrLamportsOverflow 累加超出 uint64 范围
var ErrLamportsOverflow = errors.New("lamports overflow")

// Lamports 奖励金额的存储单位，全程整数运算。
// JSON 序列化为十进制字符串，避免前端 float64 精度丢失。
type Lamports uint64

// Add 溢出安全的加法
func (l Lamports) Add(o Lamports) (Lamports, error) {
	sum, carry := bits.Add64(uint64(l), uint64(o), 0)
	if carry != 0 {
		return 0, ErrLamportsOverflow
	}
	return Lamports(sum), nil
}

// Sub 饱和减法，o > l 时返回 0
func (l Lamports) Sub(o Lamports) Lamports {
	if o > l {
		return 0
	}
	return l - o
}

func (l Lamports) String() string {
	return strconv.FormatUint(uint64(l), 10)
}

// SOL 仅用于展示：lamports / 1e9，精确十进制字符串
func (l Lamports) SOL() string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(l)), 0)
	return d.Shift(-9).String()
}

// ParseLamports 解析十进制字符串
func ParseLamports(s string) (Lamports, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid lamports %q: %w", s, err)
	}
	return Lamports(v), nil
}

func (l Lamports) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Lamports) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := ParseLamports(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Value 超过 int64 的值以字符串写入（NUMERIC(20,0) 列）
func (l Lamports) Value() (driver.Value, error) {
	if uint64(l) <= math.MaxInt64 {
		return int64(l), nil
	}
	return l.String(), nil
}

// maxExactFloat 2^63，此后的浮点值不再是原始整数
const maxExactFloat = float64(1 << 63)

func (l *Lamports) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = 0
	case int64:
		if v < 0 {
			return fmt.Errorf("negative lamports %d", v)
		}
		*l = Lamports(v)
	case float64:
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return fmt.Errorf("invalid lamports %v", v)
		}
		// sqlite 把超出 int64 的 NUMERIC 存成 REAL，低位已丢失
		if v >= maxExactFloat {
			return fmt.Errorf("inexact lamports %v", v)
		}
		*l = Lamports(v)
	case []byte:
		return l.scanString(string(v))
	case string:
		return l.scanString(v)
	default:
		return fmt.Errorf("unsupported lamports type %T", src)
	}
	return nil
}

func (l *Lamports) scanString(s string) error {
	// numeric 列可能带小数位，如 "1500.0"
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return fmt.Errorf("fractional lamports %q", s)
		}
		s = s[:i]
	}
	if s == "" {
		*l = 0
		return nil
	}
	v, err := ParseLamports(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// SumLamports 溢出安全的求和
func SumLamports(values ...Lamports) (Lamports, error) {
	var total Lamports
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return 0, err
		}
	}
	return total, nil
}
