package transport

import (
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResponseCache(t *testing.T) {
	Convey("Given a bounded response cache", t, func() {
		now := time.Unix(0, 0)
		c := newResponseCache(2, func() time.Time { return now })

		Convey("When nothing was stored", func() {
			_, ok := c.get("a")
			So(ok, ShouldBeFalse)
		})

		Convey("When a zero ttl is stored", func() {
			c.put("a", []byte("1"), 0)
			So(c.size(), ShouldEqual, 0)
		})

		Convey("When the cache overflows", func() {
			c.put("a", []byte("1"), time.Minute)
			c.put("b", []byte("2"), time.Minute)
			c.put("c", []byte("3"), time.Minute)

			Convey("Then the oldest entry is evicted", func() {
				So(c.size(), ShouldEqual, 2)
				_, ok := c.get("a")
				So(ok, ShouldBeFalse)
				v, ok := c.get("c")
				So(ok, ShouldBeTrue)
				So(string(v), ShouldEqual, "3")
			})
		})

		Convey("When a key is stored twice", func() {
			c.put("a", []byte("1"), time.Minute)
			c.put("a", []byte("2"), time.Minute)

			Convey("Then only the newest value is kept", func() {
				So(c.size(), ShouldEqual, 1)
				v, _ := c.get("a")
				So(string(v), ShouldEqual, "2")
			})
		})

		Convey("When an entry is stale", func() {
			c.put("a", []byte("1"), time.Second)
			now = now.Add(time.Second)

			Convey("Then reading drops it", func() {
				_, ok := c.get("a")
				So(ok, ShouldBeFalse)
				So(c.size(), ShouldEqual, 0)
			})
		})

		Convey("When purged", func() {
			c.put("a", []byte("1"), time.Minute)
			c.purge()
			So(c.size(), ShouldEqual, 0)
		})
	})
}

func TestResponseCacheConcurrent(t *testing.T) {
	Convey("Concurrent access keeps the bound", t, func() {
		c := newResponseCache(16, nil)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					key := fmt.Sprintf("k-%d-%d", worker, j)
					c.put(key, []byte("v"), time.Minute)
					c.get(key)
				}
			}(i)
		}
		wg.Wait()
		So(c.size(), ShouldEqual, 16)
	})
}
