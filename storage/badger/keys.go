// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/libindex/core"
)

// Key prefixes for different data types
const (
	documentPrefix         = "doc:"
	documentFilenamePrefix = "docf:"
	documentHashPrefix     = "doch:"
	documentDatePrefix     = "docd:"
	chunkPrefix            = "chk:"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(documentPrefix + string(id))
}

// makeFilenameKey generates the unique filename index key.
func makeFilenameKey(filename string) []byte {
	return []byte(documentFilenamePrefix + filename)
}

// makeHashKey generates the unique content hash index key.
func makeHashKey(hash string) []byte {
	return []byte(documentHashPrefix + hash)
}

// makeDocumentDateKey generates a composite key for the creation date index.
// Format: prefix:timestamp:id
func makeDocumentDateKey(createdAt time.Time, id core.ID) []byte {
	buf := make([]byte, len(documentDatePrefix)+8+len(id))
	offset := copy(buf, documentDatePrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makeChunkPrefix generates the key prefix shared by all chunks of a document.
// Format: prefix:documentID:
func makeChunkPrefix(documentID core.ID) []byte {
	return []byte(chunkPrefix + string(documentID) + ":")
}

// makeChunkKey generates the key of one chunk. The (document, index) pair
// is the key, so it can only exist once.
// Format: prefix:documentID:index
func makeChunkKey(documentID core.ID, index int) []byte {
	p := makeChunkPrefix(documentID)
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}
