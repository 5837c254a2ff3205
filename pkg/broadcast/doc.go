// Package broadcast provides a type-safe, bounded broadcast bus with
// independent receive cursors. Every published value is delivered to every
// active subscription; there is no routing.
//
// The bus keeps the last N published values in a ring buffer. Each
// subscription advances through the ring at its own pace. A subscription
// that falls more than N values behind observes a *LagError on its next
// Recv and resumes from the oldest value still retained, so publishing
// never blocks on a slow consumer and message loss is visible to the
// consumer that suffered it.
//
// Basic usage:
//
//	bus := broadcast.New[string](100)
//	defer bus.Close()
//
//	sub := bus.Subscribe(ctx)
//	defer sub.Close()
//
//	_ = bus.Publish("hello")
//
//	for {
//		v, err := sub.Recv(ctx)
//		if err != nil {
//			break
//		}
//		fmt.Println(v)
//	}
//
// Subscriptions are automatically released when their context is
// cancelled. Values are stored and delivered by value, so a published
// struct is effectively cloned per subscriber.
package broadcast
