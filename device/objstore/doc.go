// Package objstore implements a block device on top of an S3-compatible
// object store.
//
// Every block is one object named "<prefix>/<dev>/<block>", optionally
// compressed. A per-device roaring bitmap remembers which blocks exist so
// that reading a never-written block costs no round-trip; the bitmaps are
// rebuilt by listing the prefix when the device is opened.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dev, err := objstore.Open(ctx, objstore.NewMinioStore(client, "blocks"), objstore.Options{
//	    Prefix:      "fs0",
//	    Compression: codec.LZ4,
//	})
//	c := cache.New(cache.Options{Slots: 64, Device: dev})
package objstore
