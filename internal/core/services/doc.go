// Package services holds vetrina's core behaviour behind the driving ports:
// hybrid search, the shop assistant, catalog builds and hot reloads,
// settings and the session sweeper.
package services
