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


// Package queue provides a generic FIFO executor bounded by a concurrency
// limit.
//
// A Queue is constructed with a key function, a handler and a limit. Items
// start in enqueue order; at most the limit are in flight at once, and when a
// handler returns the next queued item starts on the freed slot. Handler
// errors and panics are logged and never stop the queue.
//
//	q, err := queue.New(
//	    func(r core.OperationRequest) string { return r.Key() },
//	    func(ctx context.Context, r core.OperationRequest) error {
//	        _, err := manager.Execute(ctx, r)
//	        return err
//	    },
//	    3,
//	)
//	if err != nil {
//	    return err
//	}
//	defer q.Release()
//
//	err = q.Enqueue(req)        // ErrDuplicate if req.Key() is queued or running
//	err = q.Wait(ctx)           // blocks until idle
//	err = q.Drain(ctx)          // running items finish, nothing new starts
//	dropped := q.Clear()        // discard items that have not started
//
// Handlers run on an ants worker pool sized to the limit.
package queue
