// Counters for gate activity, bucketed by hour, day, and all-time.
//
// Includes an interface and implementations using redis and in-process memory.
package countstore
