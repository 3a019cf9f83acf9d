// Named string sets loaded from configuration, used for lookups like flagged profile-link domains.
package setstore
