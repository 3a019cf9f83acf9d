// Boundary to the content hosting platform: removing and reporting content, banning users,
// moderator notes, direct messages, moderator lists, and user profiles.
//
// APIClient talks to a platform moderation HTTP API. MockClient is an in-memory implementation
// which records every call, for tests and dry runs.
package platform
