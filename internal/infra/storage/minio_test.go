package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressReader_Cumulative(t *testing.T) {
	var got []int64
	p := &progressReader{fn: func(n int64) { got = append(got, n) }}

	n, err := p.Read(make([]byte, 10))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
	p.Read(make([]byte, 5))

	assert.Equal(t, []int64{10, 15}, got)
}

func TestObjectURL(t *testing.T) {
	s := &Store{bucketName: "bossom", publicURL: "http://minio.local:9000"}
	assert.Equal(t, "http://minio.local:9000/bossom/cases/c1/t1.dcm", s.ObjectURL("cases/c1/t1.dcm"))
	assert.Equal(t, "http://minio.local:9000/bossom/cases/a%20b/t1.png", s.ObjectURL("cases/a b/t1.png"))
}
