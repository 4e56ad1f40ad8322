package utils

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func GenerateNanoId(length int) string {
	id, err := gonanoid.Generate(nanoidAlphabet, length)
	if err != nil {
		panic(err)
	}
	return id
}

func GenerateNanoIdWithPrefix(prefix string, length int) string {
	return prefix + "_" + GenerateNanoId(length)
}

func Now() time.Time {
	return time.Now().UTC()
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}
