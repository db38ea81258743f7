package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeHash — content-хэш поста для подавления точных дублей в рамках
// одного источника. Считается по заголовку, цене и миниатюре: этих полей
// достаточно, чтобы отличить перепубликацию от нового объявления.
func (p *Post) ComputeHash() string {
	h := sha256.New()
	h.Write([]byte(p.Heading))
	h.Write([]byte(fmt.Sprintf("|%d|", p.Price)))
	h.Write(p.Thumbnail)
	return hex.EncodeToString(h.Sum(nil))
}
