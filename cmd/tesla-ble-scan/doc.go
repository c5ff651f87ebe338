/*
tesla-ble-scan searches for Tesla vehicles in Bluetooth Low Energy range. It
shows the BLE local name, RSSI, and body-controller state for every vehicle
found. All Tesla vehicles advertise with the local name "SxxxxxxxxxxxxxxxxC",
where the sixteen hex digits are the first eight bytes of the SHA1 checksum
of the VIN; a reverse lookup from that name back to a VIN is possible only
with a large rainbow table, and is not implemented here.

When -key-file (or TESLA_KEY_FILE) names a private-key scalar file, the
enrolled key list is fetched too, via the unauthenticated VCSEC whitelist
read.

Run "tesla-ble-scan help" for the list of available commands, or
"tesla-ble-scan help COMMAND" for usage on one of them. Passing -i starts
an interactive shell against the first vehicle found, reading commands
from stdin until EOF or "exit".
*/
package main
